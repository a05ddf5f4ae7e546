//go:build !linux && !darwin

package media

func kernelRelease() string {
	return ""
}
