package publisher

import "strings"

// Default namespace layout.
const (
	DefaultPrefix    = "generated_tracks/"
	DefaultExtension = ".wav"
	// RootPrefix publishes tracks at the top level of the store.
	RootPrefix = "/"
)

// Namespace maps candidate stems onto file names and remote keys.
type Namespace struct {
	Prefix    string
	Extension string
}

// NewNamespace fills in defaults, adds the leading dot to the extension and
// the trailing slash to the prefix. An empty prefix selects DefaultPrefix and
// RootPrefix selects the top level of the store.
func NewNamespace(prefix, extension string) Namespace {
	switch prefix {
	case "":
		prefix = DefaultPrefix
	case RootPrefix:
		prefix = ""
	}

	if extension == "" {
		extension = DefaultExtension
	}

	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}

	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return Namespace{Prefix: prefix, Extension: extension}
}

// Filename returns the local file name of stem.
func (n Namespace) Filename(stem string) string {
	return stem + n.Extension
}

// Key returns the remote key of stem.
func (n Namespace) Key(stem string) string {
	return n.Prefix + n.Filename(stem)
}

// Holds reports whether key is a track of this namespace.
func (n Namespace) Holds(key string) bool {
	return strings.HasPrefix(key, n.Prefix) && strings.HasSuffix(key, n.Extension)
}
