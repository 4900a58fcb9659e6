package entity

import "time"

// DbPoemRecord stores one completed generation: the submitted code plus the
// poem the provider produced. Records are only persisted after a successful
// generation; a failed attempt leaves no row behind.
type DbPoemRecord struct {
	// ID 在创建时生成（UUID），不可变
	ID        string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint    `gorm:"column:user_id;index" json:"user_id"`
	User   *DbUser `gorm:"foreignKey:UserID" json:"-"`

	// 输入载荷，创建后不可变
	Code     string `gorm:"column:code;type:text" json:"code"`
	Language string `gorm:"column:language;type:varchar(64)" json:"language"`
	Style    string `gorm:"column:style;type:varchar(64)" json:"style"`

	// PoemText 生成成功后写入一次，之后不再修改
	PoemText string `gorm:"column:poem_text;type:text" json:"poem_text"`

	Provider string `gorm:"column:provider;type:varchar(64)" json:"provider"`
	Model    string `gorm:"column:model;type:varchar(128)" json:"model"`

	// Favorite 是记录上唯一可变的字段，FavoriteUpdatedAt 用于同步时的新旧判定
	Favorite          bool      `gorm:"column:favorite;not null;default:false" json:"favorite"`
	FavoriteUpdatedAt time.Time `gorm:"column:favorite_updated_at" json:"favorite_updated_at"`
}

// TableName 指定表名。
func (DbPoemRecord) TableName() string {
	return "poem_records"
}

// DbTombstone 记录已删除的诗歌，供同步时向远端传播删除。
type DbTombstone struct {
	RecordID  string    `gorm:"primarykey;type:varchar(36)" json:"record_id"`
	UserID    uint      `gorm:"column:user_id;index" json:"user_id"`
	DeletedAt time.Time `gorm:"column:deleted_at" json:"deleted_at"`
}

// TableName 指定表名。
func (DbTombstone) TableName() string {
	return "poem_tombstones"
}
