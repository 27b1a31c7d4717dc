package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	catalogdomain "github.com/smallbiznis/catalog/internal/catalog/domain"
	typedomain "github.com/smallbiznis/catalog/internal/catalogtype/domain"
	"github.com/smallbiznis/catalog/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMapKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		status int
	}{
		{"catalog not found", catalogdomain.ErrNotFound, KindNotFound, http.StatusNotFound},
		{"type not found", typedomain.ErrNotFound, KindNotFound, http.StatusNotFound},
		{"record not found", gorm.ErrRecordNotFound, KindNotFound, http.StatusNotFound},
		{"catalog disabled", catalogdomain.ErrDisabled, KindDisabled, http.StatusNotFound},
		{"type disabled", typedomain.ErrDisabled, KindDisabled, http.StatusNotFound},
		{"bad max level", catalogdomain.ErrInvalidMaxLevel, KindValidation, http.StatusBadRequest},
		{"bad page size", pagination.ErrInvalidPageSize, KindValidation, http.StatusBadRequest},
		{"cyclic move", catalogdomain.ErrCyclicMove, KindValidation, http.StatusBadRequest},
		{"move in progress", catalogdomain.ErrMoveInProgress, KindConflict, http.StatusConflict},
		{"type in use", typedomain.ErrInUse, KindConflict, http.StatusConflict},
		{"wrapped", fmt.Errorf("load catalog: %w", catalogdomain.ErrNotFound), KindNotFound, http.StatusNotFound},
		{"unknown", errors.New("connection refused"), KindInternal, http.StatusInternalServerError},
		{"nil", nil, KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Map(tt.err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, string(tt.kind), got.Payload.Type)
		})
	}
}

func TestMapValidationFields(t *testing.T) {
	tests := map[error]string{
		catalogdomain.ErrInvalidID:       "catalog_id",
		catalogdomain.ErrInvalidParentID: "parent_id",
		catalogdomain.ErrInvalidName:     "name",
		catalogdomain.ErrInvalidOrderBy:  "order_by",
		typedomain.ErrInvalidID:          "type_id",
		typedomain.ErrInvalidCode:        "code",
		catalogdomain.ErrTypeMismatch:    "type",
	}
	for err, field := range tests {
		got := Map(err)
		require.Len(t, got.Payload.Errors, 1)
		assert.Equal(t, field, got.Payload.Errors[0].Field, err.Error())
		assert.Equal(t, err.Error(), got.Payload.Errors[0].Code)
	}
}

func TestMapRendersValidationErrors(t *testing.T) {
	got := Map(NewValidationError("name", "required", "name is required"))
	assert.Equal(t, KindValidation, got.Kind)

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"type":"validation_error","message":"validation error","errors":[{"field":"name","code":"required","message":"name is required"}]}}`, string(raw))
}
