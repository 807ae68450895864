package entity

// SourceDocument is a file accepted for processing. Immutable once created.
type SourceDocument struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Ext         string `json:"ext"`    // lowercase, sans '.'
	Format      string `json:"format"` // constants.PDF | constants.IMAGE | constants.TEXT
	Size        int64  `json:"size"`
	ContentHash string `json:"content_hash"` // hex sha256
}
