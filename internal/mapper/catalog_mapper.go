package mapper

import (
	"encoding/json"
	"time"

	"research-chat-be/internal/constant"
	"research-chat-be/internal/entity"
	"research-chat-be/internal/model"

	"gorm.io/datatypes"
)

type CatalogMapper struct{}

func NewCatalogMapper() *CatalogMapper {
	return &CatalogMapper{}
}

func decodeMetadata(raw datatypes.JSON) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (m *CatalogMapper) DocumentToEntity(d *model.Document) *entity.CatalogItem {
	if d == nil {
		return nil
	}
	metadata := decodeMetadata(d.Metadata)
	if d.ProjectId != nil {
		if metadata == nil {
			metadata = make(map[string]interface{})
		}
		metadata["project_id"] = d.ProjectId.String()
	}
	return &entity.CatalogItem{
		Id:          d.Id,
		UserId:      d.UserId,
		Type:        constant.ContextTypeDocument,
		Title:       d.Title,
		Description: d.Description,
		Subtype:     d.ReportType,
		Metadata:    metadata,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   optionalTime(d.UpdatedAt),
	}
}

func (m *CatalogMapper) ProjectToEntity(p *model.Project) *entity.CatalogItem {
	if p == nil {
		return nil
	}
	return &entity.CatalogItem{
		Id:          p.Id,
		UserId:      p.UserId,
		Type:        constant.ContextTypeProject,
		Title:       p.Name,
		Description: p.Description,
		Metadata:    decodeMetadata(p.Metadata),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   optionalTime(p.UpdatedAt),
	}
}

func (m *CatalogMapper) KnowledgeBaseToEntity(k *model.KnowledgeBase) *entity.CatalogItem {
	if k == nil {
		return nil
	}
	return &entity.CatalogItem{
		Id:          k.Id,
		UserId:      k.UserId,
		Type:        constant.ContextTypeKnowledgeBase,
		Title:       k.Name,
		Description: k.Description,
		Metadata:    decodeMetadata(k.Metadata),
		CreatedAt:   k.CreatedAt,
		UpdatedAt:   optionalTime(k.UpdatedAt),
	}
}
