package types

import (
	"fmt"
	"strings"

	"github.com/jitsucom/spout/base/utils"
)

// ErrorPayload carries source coordinates of a failed extraction for error reporting
type ErrorPayload struct {
	Host       string
	Database   string
	Cluster    string
	Schema     string
	Table      string
	Collection string
	Bucket     string
	Statement  string
	ReadRows   int
}

func (ep *ErrorPayload) String() string {
	var msgParts []string
	if ep.Host != "" {
		msgParts = append(msgParts, fmt.Sprintf("host: %s", ep.Host))
	}
	if ep.Database != "" {
		msgParts = append(msgParts, fmt.Sprintf("database: %s", ep.Database))
	}
	if ep.Cluster != "" {
		msgParts = append(msgParts, fmt.Sprintf("cluster: %s", ep.Cluster))
	}
	if ep.Schema != "" {
		msgParts = append(msgParts, fmt.Sprintf("schema: %s", ep.Schema))
	}
	if ep.Table != "" {
		msgParts = append(msgParts, fmt.Sprintf("table: %s", ep.Table))
	}
	if ep.Collection != "" {
		msgParts = append(msgParts, fmt.Sprintf("collection: %s", ep.Collection))
	}
	if ep.Bucket != "" {
		msgParts = append(msgParts, fmt.Sprintf("bucket: %s", ep.Bucket))
	}
	if ep.Statement != "" {
		msgParts = append(msgParts, fmt.Sprintf("statement: %s", utils.ShortenStringWithEllipsis(ep.Statement, 1000)))
	}
	if ep.ReadRows > 0 {
		msgParts = append(msgParts, fmt.Sprintf("rows read: %d", ep.ReadRows))
	}
	if len(msgParts) > 0 {
		return "\n" + strings.Join(msgParts, "\n") + "\n"
	} else {
		return ""
	}
}
