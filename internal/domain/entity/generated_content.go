// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// GeneratedContent 已生成内容，相似内容复用的底层存储
type GeneratedContent struct {
	ID               string         `json:"id" gorm:"type:uuid;primaryKey"`
	UserID           string         `json:"user_id" gorm:"type:uuid;index;not null"`
	Prompt           string         `json:"prompt" gorm:"type:text;not null"`
	Style            string         `json:"style,omitempty" gorm:"type:varchar(64)"`
	Tone             string         `json:"tone,omitempty" gorm:"type:varchar(64)"`
	Content          string         `json:"content" gorm:"type:text;not null"`
	WordCount        int            `json:"word_count" gorm:"not null;default:0"`
	Keywords         pq.StringArray `json:"keywords,omitempty" gorm:"type:text[]"`
	OriginalityScore float64        `json:"originality_score" gorm:"not null;default:0"`
	AIDetectionScore float64        `json:"ai_detection_score" gorm:"not null;default:0"`
	ReadabilityScore float64        `json:"readability_score" gorm:"not null;default:0"`
	// Indexed 向量是否已写入 Milvus
	Indexed   bool      `json:"indexed" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (GeneratedContent) TableName() string {
	return "generated_contents"
}

// NewGeneratedContent 创建已生成内容记录
func NewGeneratedContent(userID, prompt, style, tone, content string, wordCount int) *GeneratedContent {
	return &GeneratedContent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Prompt:    prompt,
		Style:     style,
		Tone:      tone,
		Content:   content,
		WordCount: wordCount,
		CreatedAt: time.Now(),
	}
}

// ContentFingerprint 拼接提示指纹，检索侧与索引侧使用同一拼接规则
func ContentFingerprint(prompt, style, tone string) string {
	return prompt + "\n" + style + "\n" + tone
}

// Fingerprint 生成用于向量化的提示指纹
func (c *GeneratedContent) Fingerprint() string {
	return ContentFingerprint(c.Prompt, c.Style, c.Tone)
}
