package graph

import "time"

// driveItem is the subset of the Graph drive item resource the app reads.
type driveItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ETag         string    `json:"eTag"`
	LastModified time.Time `json:"lastModifiedDateTime"`
	File         *struct {
		MimeType string `json:"mimeType"`
	} `json:"file,omitempty"`
	Folder *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder,omitempty"`
	Image *struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"image,omitempty"`
	ParentReference *struct {
		Path string `json:"path"`
	} `json:"parentReference,omitempty"`
}

// listResponse is a single page of a children listing. NextLink is set
// when more pages follow.
type listResponse struct {
	NextLink string      `json:"@odata.nextLink,omitempty"`
	Value    []driveItem `json:"value"`
}
