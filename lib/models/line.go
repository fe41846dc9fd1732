package models

type Line struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	Description string
	Mode        string `gorm:"index"`
	Color       string
	TextColor   string
}

type Lines []Line
