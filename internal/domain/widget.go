package domain

import (
	"time"

	"gorm.io/datatypes"
)

const DefaultEnv = "production"

// Widget is the locally owned, authoritative record. Everything it references
// (dataset, layer, owning user) lives in other services and is only carried
// here as an identifier.
type Widget struct {
	ID          string `gorm:"type:uuid;primaryKey" json:"id"`
	Dataset     string `gorm:"not null;index;column:dataset" json:"dataset"`
	Name        string `gorm:"not null;column:name" json:"name"`
	Slug        string `gorm:"uniqueIndex;not null;column:slug" json:"slug"`
	Description string `gorm:"column:description" json:"description,omitempty"`
	Source      string `gorm:"column:source" json:"source,omitempty"`
	SourceURL   string `gorm:"column:source_url" json:"sourceUrl,omitempty"`
	Authors     string `gorm:"column:authors" json:"authors,omitempty"`
	QueryURL    string `gorm:"column:query_url" json:"queryUrl,omitempty"`

	Application []string `gorm:"serializer:json;type:jsonb;not null;column:application" json:"application"`
	Env         string   `gorm:"not null;default:production;index;column:env" json:"env"`

	Verified              bool `gorm:"not null;default:false;column:verified" json:"verified"`
	Default               bool `gorm:"not null;default:false;column:is_default" json:"default"`
	Published             bool `gorm:"not null;default:true;column:published" json:"published"`
	Protected             bool `gorm:"not null;default:false;column:protected" json:"protected"`
	Freeze                bool `gorm:"not null;default:false;column:freeze" json:"freeze"`
	Template              bool `gorm:"not null;default:false;column:template" json:"template"`
	DefaultEditableWidget bool `gorm:"not null;default:false;column:default_editable_widget" json:"defaultEditableWidget"`

	// WidgetConfig is opaque to this service beyond being a JSON object.
	WidgetConfig datatypes.JSONMap `gorm:"type:jsonb;column:widget_config" json:"widgetConfig,omitempty"`

	ThumbnailURL string `gorm:"column:thumbnail_url" json:"thumbnailUrl,omitempty"`
	LayerID      string `gorm:"column:layer_id" json:"layerId,omitempty"`
	UserID       string `gorm:"index;column:user_id" json:"userId,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updatedAt"`
}

func (Widget) TableName() string { return "widget" }

// WidgetWithRelations is a widget page entry enriched with caller-requested
// relationships. Absent relationships were either not requested or failed to
// resolve and were dropped.
type WidgetWithRelations struct {
	*Widget
	User       *UserSummary `json:"user,omitempty"`
	Vocabulary []Vocabulary `json:"vocabulary,omitempty"`
	Metadata   []Metadata   `json:"metadata,omitempty"`
}
