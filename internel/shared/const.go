package shared

const (
	SID = "X-PARAM-SID"
	RID = "X-PARAM-RID"

	ApiPrefix = "/ws/ssh"

	// plain HTTP download served next to the websocket
	DownloadAPI    = "/api/download"
	OperatorHeader = "X-Operator-Id"

	// client -> server
	ListFiles       = "list_files"
	FileDownload    = "file_download"
	FileUploadStart = "file_upload_start"
	FileUploadEnd   = "file_upload_end"

	// server -> client
	FileList           = "file_list"
	Error              = "error"
	FileDownloadStart  = "file_download_start"
	FileDownloadChunk  = "file_download_chunk"
	FileDownloadEnd    = "file_download_end"
	FileUploadProgress = "file_upload_progress"
	FileUploadComplete = "file_upload_complete"
	FileUploadError    = "file_upload_error"

	DefaultPath = "/root"
)

var inbound = map[string]struct{}{
	FileList:           {},
	Error:              {},
	FileDownloadStart:  {},
	FileDownloadChunk:  {},
	FileDownloadEnd:    {},
	FileUploadProgress: {},
	FileUploadComplete: {},
	FileUploadError:    {},
}

// IsInbound reports whether tag is one the server may send.
func IsInbound(tag string) bool {
	_, ok := inbound[tag]
	return ok
}

func GetTypeName(tag string) string {
	if tag == "" {
		return "UNKNOWN"
	}
	return tag
}
