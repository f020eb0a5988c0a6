package types

// Category is an editorial grouping for blog posts. Only
// administrators create or remove categories.
type Category struct {
	// ID is the unique identifier of the category.
	ID int `json:"id" db:"id"`

	// Name is the display name of the category.
	Name string `json:"name" db:"name"`

	// Slug is the unique, lowercase URL identifier derived from Name.
	Slug string `json:"slug" db:"slug"`
}

// Tag is a free-form label attached to blog posts. Only
// administrators create or remove tags.
type Tag struct {
	// ID is the unique identifier of the tag.
	ID int `json:"id" db:"id"`

	// Name is the display name of the tag.
	Name string `json:"name" db:"name"`

	// Slug is the unique, lowercase URL identifier derived from Name.
	Slug string `json:"slug" db:"slug"`
}
