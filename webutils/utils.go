package webutils

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

func WriteFileHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
}

func WriteFile(w http.ResponseWriter, in io.Reader, name string) {
	WriteFileHeaders(w, name)
	if _, err := io.Copy(w, in); err != nil {
		log.Printf("[web] Error when writing file %q: %v", name, err)
	}
}

func WriteJson(w http.ResponseWriter, data interface{}) {
	res, err := json.Marshal(data)
	if err != nil {
		WriteError(w, err)
	} else {
		w.Header().Set("Content-Type", "application/json")
		WriteResult(w, res)
	}
}

func WriteJsonFile(w http.ResponseWriter, v interface{}, fileName string) {
	if data, err := json.MarshalIndent(v, "", "  "); err != nil {
		WriteError(w, errors.Wrapf(err, "Failed to marshal"))
	} else {
		WriteFile(w, bytes.NewReader(data), fileName+".json")
	}
}

// ReadFormFile returns content of multipart form file or request body
// when request is not multipart.
func ReadFormFile(r *http.Request, formFileKey string) ([]byte, error) {
	if strings.ToUpper(r.Method) != "POST" {
		return nil, errors.Errorf("Invalid http method %q", r.Method)
	}

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		f, _, err := r.FormFile(formFileKey)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to get file")
		}
		defer f.Close()
		src = f
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read")
	}
	return data, nil
}

func ReadJsonFile(r *http.Request, formFileKey string, v interface{}) error {
	data, err := ReadFormFile(r, formFileKey)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "Failed to unmarshal")
	}
	return nil
}

func WriteResult(w http.ResponseWriter, data []byte) {
	_, err := w.Write(data)
	if err != nil {
		log.Printf("[web] Error when writing response: %v", err)
	}
}

// WriteError reports err as json with internal server error status.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorStatus(w, http.StatusInternalServerError, err)
}

func WriteErrorStatus(w http.ResponseWriter, code int, err error) {
	type jError struct {
		Error string `json:"error"`
	}
	data, merr := json.Marshal(&jError{Error: err.Error()})
	if merr != nil {
		log.Printf("[web] Error marshaling error '%v': %v", err, merr)
		http.Error(w, err.Error(), code)
		return
	}
	log.Printf("[web] HERR: %v", string(data))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	WriteResult(w, data)
}
