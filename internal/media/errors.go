package media

import "errors"

var (
	// ErrAssetTooLarge indicates the payload exceeds the ceiling for its media type.
	ErrAssetTooLarge = errors.New("media asset too large")
	// ErrVideoTooLong indicates a clip runs past the allowed duration.
	ErrVideoTooLong = errors.New("video too long")
	// ErrUnsupportedType indicates the bytes are not an image or an MP4 video.
	ErrUnsupportedType = errors.New("unsupported media type")
	// ErrHostUnavailable indicates the media host rejected or could not take the request.
	ErrHostUnavailable = errors.New("media host unavailable")
	// ErrPathTraversal indicates a storage key attempted to leave the upload directory.
	ErrPathTraversal = errors.New("path traversal is forbidden")
)
