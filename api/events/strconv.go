package events

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

func formatInt(v int64) string   { return strconv.FormatInt(v, 10) }
func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func parseInt(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	return v, errors.Wrapf(err, "event key %q", s)
}

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	return v, errors.Wrapf(err, "event seq %q", s)
}
