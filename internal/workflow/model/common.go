package model

type TextAttachment struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}
