package entity

import "time"

// PoemDocument 是诗歌记录在远端文档存储中的稳定 JSON 模式。
// 字段与 DbPoemRecord 一一对应，序列化后再加载应得到完全相同的记录。
type PoemDocument struct {
	ID                string    `json:"id"`
	Code              string    `json:"code"`
	Language          string    `json:"language"`
	Style             string    `json:"style"`
	Poem              string    `json:"poem"`
	Provider          string    `json:"provider,omitempty"`
	Model             string    `json:"model,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	Favorite          bool      `json:"favorite"`
	FavoriteUpdatedAt time.Time `json:"favorite_updated_at"`
}

// DocumentFromRecord 将本地记录转换为远端文档。
func DocumentFromRecord(record *DbPoemRecord) *PoemDocument {
	if record == nil {
		return nil
	}
	return &PoemDocument{
		ID:                record.ID,
		Code:              record.Code,
		Language:          record.Language,
		Style:             record.Style,
		Poem:              record.PoemText,
		Provider:          record.Provider,
		Model:             record.Model,
		CreatedAt:         record.CreatedAt.UTC(),
		Favorite:          record.Favorite,
		FavoriteUpdatedAt: record.FavoriteUpdatedAt.UTC(),
	}
}

// ToRecord 将远端文档还原为归属指定账户的本地记录。
func (d *PoemDocument) ToRecord(userID uint) *DbPoemRecord {
	if d == nil {
		return nil
	}
	return &DbPoemRecord{
		ID:                d.ID,
		UserID:            userID,
		Code:              d.Code,
		Language:          d.Language,
		Style:             d.Style,
		PoemText:          d.Poem,
		Provider:          d.Provider,
		Model:             d.Model,
		CreatedAt:         d.CreatedAt,
		Favorite:          d.Favorite,
		FavoriteUpdatedAt: d.FavoriteUpdatedAt,
	}
}
