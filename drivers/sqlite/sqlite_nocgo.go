//go:build !cgo

package sqlite

func errorCode(error) string {
	return ""
}
