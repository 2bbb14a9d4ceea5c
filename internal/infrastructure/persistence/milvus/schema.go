// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionWriterContents 已生成内容集合
	CollectionWriterContents = "writer_contents"

	// VectorDimension 向量维度
	VectorDimension = 1024
)

// WriterContentsSchema 已生成内容 Collection Schema
// 向量来自提示指纹（prompt + style + tone），用于相似内容复用检索。
func WriterContentsSchema() *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionWriterContents,
		Description:    "Generated content fingerprints for similarity reuse",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": "1024",
				},
			},
			{
				Name:     "user_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "style",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "tone",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "word_count",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "created_at",
				DataType: entity.FieldTypeInt64,
			},
		},
	}
}

// ContentVector 内容向量数据结构
type ContentVector struct {
	ID        string    `json:"id"`
	Vector    []float32 `json:"vector"`
	UserID    string    `json:"user_id"`
	Style     string    `json:"style"`
	Tone      string    `json:"tone"`
	WordCount int64     `json:"word_count"`
	CreatedAt int64     `json:"created_at"`
}
