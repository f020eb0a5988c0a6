package types

import "time"

// Blog represents a published post.
// Body holds the full HTML content; Excerpt and MetaDesc are derived
// from it at write time and stored denormalized for cheap listing.
type Blog struct {
	// ID is the unique identifier of the blog post.
	ID int `json:"id" db:"id"`

	// Title is the human-readable title of the post.
	Title string `json:"title" db:"title"`

	// Slug is the unique, lowercase URL identifier derived from the
	// title at creation time. It is immutable across updates.
	Slug string `json:"slug" db:"slug"`

	// Body is the full HTML content of the post.
	Body string `json:"body,omitempty" db:"body"`

	// Excerpt is a plain-text preview trimmed from the body.
	Excerpt string `json:"excerpt" db:"excerpt"`

	// MetaTitle is the SEO page title ("<title> | <app name>").
	MetaTitle string `json:"mtitle" db:"mtitle"`

	// MetaDesc is the SEO description stripped from the body head.
	MetaDesc string `json:"mdesc" db:"mdesc"`

	// Photo references the cover image in object storage.
	Photo Photo `json:"photo,omitzero" db:"photo"`

	// PostedBy identifies the author.
	PostedBy Author `json:"posted_by" db:"posted_by"`

	// Categories are the categories the post is filed under.
	Categories []Category `json:"categories" db:"categories"`

	// Tags are the tags attached to the post.
	Tags []Tag `json:"tags" db:"tags"`

	// CreatedAt is the timestamp when the post was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Author is the public projection of a post's author embedded in
// blog responses.
type Author struct {
	ID       int    `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Name     string `json:"name" db:"name"`
	Profile  string `json:"profile,omitempty" db:"profile"`
}
