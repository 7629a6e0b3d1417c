package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kestrelpay/kestrel/internal/api/httputil"
	"github.com/kestrelpay/kestrel/internal/config"
)

type batchPayload struct {
	Count int `json:"count" validate:"required,min=1,max=10000"`
}

// SimulateBatch handles POST /api/simulate/batch: drives a load batch
// through the gateway and returns the aggregate outcome.
func (d *Deps) SimulateBatch(w http.ResponseWriter, r *http.Request) {
	var payload batchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := d.Validate.Struct(&payload); err != nil {
		httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
		return
	}

	summary := d.Loadgen.Run(r.Context(), payload.Count)
	if summary.Errors == summary.Total && summary.Total > 0 {
		httputil.Error(w, http.StatusInternalServerError, config.ErrorLoadGenerationFailed,
			"every payment in the batch errored")
		return
	}
	httputil.JSON(w, http.StatusOK, summary)
}
