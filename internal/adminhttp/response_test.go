// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package adminhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONWrapsDataWithMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Meta)
	assert.Nil(t, resp.Error)
}

func TestWriteErrorSetsCodeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusConflict, ErrBusy, "runtime busy")

	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrBusy, resp.Error.Code)
	assert.Equal(t, "runtime busy", resp.Error.Message)
}
