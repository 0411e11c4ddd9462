package app

import (
	"encoding/json"
	"net/http"
)

type ModelsResponse struct {
	Models []string `json:"models"`
}

// modelsHandler returns the model allow-list so the client can populate its
// picker without hardcoding model names.
func (a *Application) modelsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(ContentTypeHeader, ContentTypeJSON)
	w.WriteHeader(http.StatusOK)

	_ = json.NewEncoder(w).Encode(ModelsResponse{Models: a.config.Models.Allowed})
}
