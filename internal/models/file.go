package models

// FileModel is an uploaded object in S3-compatible storage.
type FileModel struct {
	Base        `bson:",inline"`
	PublicID    string `json:"publicId"    bson:"public_id"`
	Name        string `json:"name"        bson:"name"`
	Key         string `json:"-"           bson:"key"`
	URL         string `json:"url"         bson:"url"`
	Size        int64  `json:"size"        bson:"size"`
	ContentType string `json:"contentType" bson:"content_type"`
	Downloads   int64  `json:"downloads"   bson:"downloads"`
}
