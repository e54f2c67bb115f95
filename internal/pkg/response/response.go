package response

import (
	"encoding/json"
	"net/http"
)

// ErrorBody — единый формат ошибок API: message и, для ошибок валидации,
// имя поля, на котором споткнулись.
type ErrorBody struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorBody{Message: message})
}

// RespondWithValidationError — 400 с указанием поля.
func RespondWithValidationError(w http.ResponseWriter, message, field string) {
	RespondWithJSON(w, http.StatusBadRequest, ErrorBody{Message: message, Field: field})
}
