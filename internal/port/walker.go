package port

type FileInfo struct {
	Path string
	Size int64
}

type Walker interface {
	Walk(root string) ([]FileInfo, error)
}
