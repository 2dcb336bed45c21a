package output

import (
	"encoding/json"

	"github.com/loggate/loggate/internal/core/quota"
)

// JSONFormatter renders records as a JSON array.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) FormatQuotas(views []quota.View) (string, error) {
	if views == nil {
		views = []quota.View{}
	}

	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(views, "", "  ")
	} else {
		data, err = json.Marshal(views)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
