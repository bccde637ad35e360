package models

import "time"

// User represents one account in the metadata store. The username is the
// key of the store's mapping and is not duplicated inside the record.
type User struct {
	PasswordHash string       `json:"passwordHash"`
	Files        []FileRecord `json:"files"`
}

// FileRecord represents the metadata of one uploaded file
type FileRecord struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	StorageName  string    `json:"storageName"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploadedAt"`
	MimeType     string    `json:"mimeType"`
	Checksum     string    `json:"checksum"`
}

// UserInfo is the aggregate account view returned by GET /api/user
type UserInfo struct {
	Username  string `json:"username"`
	FileCount int    `json:"fileCount"`
	TotalSize int64  `json:"totalSize"`
}
