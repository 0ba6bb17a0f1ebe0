package domain

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
)

// ServiceID identifies a catalog service. Snapshots written by older web
// clients sometimes carry it as a quoted string, so both forms decode.
type ServiceID int64

func (id ServiceID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func ParseServiceID(s string) (ServiceID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.WithSecondaryError(errors.Wrapf(ErrInvalidInput, "service id %q", s), err)
	}
	return ServiceID(n), nil
}

func (id *ServiceID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := ParseServiceID(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Wrap(err, "service id")
	}
	*id = ServiceID(n)
	return nil
}

// ItemID is the client-generated identifier of a cart item. Legacy
// snapshots stored millisecond timestamps as JSON numbers.
type ItemID string

func (id *ItemID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Wrap(err, "cart item id")
	}
	*id = ItemID(n.String())
	return nil
}
