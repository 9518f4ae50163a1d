package session

import (
	"github.com/gamecafe/panelsync/internal/model"
)

// UserFromDoc reads a user document as returned by the panel API.
func UserFromDoc(d model.Doc) User {
	id, _ := d.ID()
	role, _ := d.Ref("role")

	return User{ID: id, Name: d.String("name"), Role: role}
}

// KitchenFromDoc reads a kitchen document.
func KitchenFromDoc(d model.Doc) Kitchen {
	id, _ := d.ID()

	return Kitchen{
		ID:            id,
		Name:          d.String("name"),
		SoundRoles:    model.IDs(d["soundRoles"]),
		SelectedUsers: model.IDs(d[model.FieldSelectedUsers]),
		Locations:     model.IDs(d["locations"]),
	}
}

// CategoryFromDoc reads a menu category document.
func CategoryFromDoc(d model.Doc) Category {
	id, _ := d.ID()
	auto, _ := d["isAutoServed"].(bool)

	return Category{ID: id, Name: d.String("name"), IsAutoServed: auto}
}

// KitchensFromDocs converts a kitchen list.
func KitchensFromDocs(docs []model.Doc) []Kitchen {
	out := make([]Kitchen, 0, len(docs))
	for _, d := range docs {
		out = append(out, KitchenFromDoc(d))
	}

	return out
}

// CategoriesFromDocs converts a category list.
func CategoriesFromDocs(docs []model.Doc) []Category {
	out := make([]Category, 0, len(docs))
	for _, d := range docs {
		out = append(out, CategoryFromDoc(d))
	}

	return out
}
