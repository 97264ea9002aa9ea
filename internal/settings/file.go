package settings

import (
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/utils"
)

// FileStore persists settings as an indented JSON document.
type FileStore struct {
	Path string
}

// Load reads the file over defaults. Fields absent from the file keep their
// default values.
func (f FileStore) Load(defaults model.Settings) (model.Settings, bool, error) {
	s := defaults
	found, err := utils.LoadJSON(f.Path, &s)
	if err != nil {
		return defaults, found, err
	}
	return s, found, nil
}

func (f FileStore) Save(s model.Settings) error {
	return utils.SaveJSON(f.Path, s)
}
