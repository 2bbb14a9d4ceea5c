package generation

import "errors"

// ErrSimilarityDisabled 相似检索未启用（缺少 embedder 或向量库配置）。
var ErrSimilarityDisabled = errors.New("similarity search disabled")
