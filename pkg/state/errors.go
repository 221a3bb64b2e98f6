package state

import "github.com/ybox-project/ybox/pkg/ybox"

func stateError(context string, err error) error {
	if err == nil {
		return nil
	}
	return ybox.NewError(ybox.KindSchema, context, err)
}
