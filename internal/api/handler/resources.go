package handler

import (
	"time"

	"github.com/d9705996/marknote/internal/api/jsonapi"
	"github.com/d9705996/marknote/internal/model"
)

type fileAttrs struct {
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	GroupID   *string    `json:"group_id"`
	DeletedAt *time.Time `json:"deleted_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func fileResource(f *model.File) jsonapi.ResourceObject {
	obj := jsonapi.ResourceObject{
		Type: "files",
		ID:   f.ID,
		Attributes: fileAttrs{
			Title:     f.Title,
			Content:   f.Content,
			GroupID:   f.GroupID,
			DeletedAt: f.DeletedAt,
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.UpdatedAt,
		},
	}
	if f.GroupID != nil {
		obj.Relationships = map[string]jsonapi.Relationship{
			"group": {Data: map[string]string{"type": "groups", "id": *f.GroupID}},
		}
	}
	return obj
}

type groupAttrs struct {
	Name      string    `json:"name"`
	FileCount int       `json:"file_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func groupResource(g *model.Group) jsonapi.ResourceObject {
	files := make([]map[string]string, 0, len(g.Files))
	for _, f := range g.Files {
		files = append(files, map[string]string{"type": "files", "id": f.ID})
	}
	return jsonapi.ResourceObject{
		Type: "groups",
		ID:   g.ID,
		Attributes: groupAttrs{
			Name:      g.Name,
			FileCount: len(g.Files),
			CreatedAt: g.CreatedAt,
			UpdatedAt: g.UpdatedAt,
		},
		Relationships: map[string]jsonapi.Relationship{
			"files": {Data: files},
		},
	}
}

type userAttrs struct {
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	AvatarURL   *string   `json:"avatar_url"`
	HasPassword bool      `json:"has_password"`
	CreatedAt   time.Time `json:"created_at"`
}

func userResource(u *model.User) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "users",
		ID:   u.ID,
		Attributes: userAttrs{
			Email:       u.Email,
			Username:    u.Username,
			AvatarURL:   u.AvatarURL,
			HasPassword: u.HasPassword(),
			CreatedAt:   u.CreatedAt,
		},
	}
}
