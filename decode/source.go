// Package decode turns input sources into JSON trees. Every source variant
// has exactly one decoder; the Registry picks it by type.
package decode

import "github.com/geoknoesis/semlift-go/apiproto"

// Source is one of JSON, XML, CSV, SQL, DataFrame or API.
type Source interface {
	isSource()
}

// JSON is a JSON document, passed through unchanged.
type JSON struct {
	Data []byte
}

// XML is an XML document.
type XML struct {
	Data []byte
}

// CSV is comma separated text. Without a header row the columns are named
// col1, col2 and so on.
type CSV struct {
	Data      []byte
	HasHeader bool
}

// SQL reads rows from a database/sql driver. Query wins over Table.
type SQL struct {
	Driver string
	DSN    string
	Table  string
	Query  string
}

// DataFrame reads rows through the registry's Session. Query wins over
// Table.
type DataFrame struct {
	Table string
	Query string
}

// API fetches every page of a web API through a registered protocol.
type API struct {
	Protocol string
	Config   apiproto.Config
}

func (JSON) isSource()      {}
func (XML) isSource()       {}
func (CSV) isSource()       {}
func (SQL) isSource()       {}
func (DataFrame) isSource() {}
func (API) isSource()       {}

// Kind names the source variant for logs and metrics.
func Kind(src Source) string {
	switch src.(type) {
	case JSON:
		return "json"
	case XML:
		return "xml"
	case CSV:
		return "csv"
	case SQL:
		return "sql"
	case DataFrame:
		return "dataframe"
	case API:
		return "api"
	default:
		return "unknown"
	}
}
