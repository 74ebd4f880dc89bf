package utils

import "github.com/gosimple/slug"

// Slugify turns a tour name into its lower-case URL slug.
func Slugify(name string) string {
	return slug.Make(name)
}
