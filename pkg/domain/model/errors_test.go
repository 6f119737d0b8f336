package model_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/kioku/pkg/domain/model"
)

func TestBackingSourceError(t *testing.T) {
	cause := errors.New("connection refused")
	r := mustRange(t, "2025-04-01", "2025-04-03")
	var err error = &model.BackingSourceError{ChannelID: "C1", Range: r, Err: cause}
	err = goerr.Wrap(err, "load failed")

	gt.Bool(t, errors.Is(err, model.ErrBackingSource)).True()
	gt.Bool(t, errors.Is(err, cause)).True()
	gt.Bool(t, errors.Is(err, model.ErrConsistency)).False()

	var bse *model.BackingSourceError
	gt.Bool(t, errors.As(err, &bse)).True()
	gt.Value(t, bse.ChannelID).Equal("C1")
	gt.Value(t, bse.Range).Equal(r)
	gt.String(t, bse.Error()).Contains("2025-04-01T00:00:00.000Z")
}
