// internal/api/client_test.go
package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/racecontrol/racesim/pkg/core"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000", "secret123")

	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected baseURL=http://localhost:5000, got %s", c.baseURL)
	}
	if c.apiKey != "secret123" {
		t.Errorf("expected apiKey=secret123, got %s", c.apiKey)
	}
	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
}

func TestHealthcheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthcheck" {
			t.Errorf("expected path /healthcheck, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(server.URL, "")
	err := c.Healthcheck()
	if err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}

func TestHealthcheck_ServerDown(t *testing.T) {
	c := New("http://localhost:59999", "") // unlikely to be listening
	err := c.Healthcheck()
	if err == nil {
		t.Error("expected error for unreachable server")
	}
}

func TestHealthcheck_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, "")
	err := c.Healthcheck()
	if err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestUpload_Success(t *testing.T) {
	var receivedSecret, receivedFilename, receivedRaceID string
	var receivedCircuit, receivedWinner, receivedTag string
	var receivedDuration string
	var receivedFileContent []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != UploadPath {
			t.Errorf("expected path %s, got %s", UploadPath, r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		err := r.ParseMultipartForm(10 << 20)
		if err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}

		receivedSecret = r.FormValue("secret")
		receivedFilename = r.FormValue("filename")
		receivedRaceID = r.FormValue("raceId")
		receivedCircuit = r.FormValue("circuit")
		receivedWinner = r.FormValue("winner")
		receivedDuration = r.FormValue("raceDuration")
		receivedTag = r.FormValue("tag")

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("failed to get file: %v", err)
		}
		defer file.Close()

		receivedFileContent = make([]byte, 1024)
		n, _ := file.Read(receivedFileContent)
		receivedFileContent = receivedFileContent[:n]

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// Create temp file
	tmpDir := t.TempDir()
	testFile := tmpDir + "/grand_prix_race.json.gz"
	if err := writeTestFile(testFile, []byte("test content")); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	c := New(server.URL, "mysecret")
	meta := core.UploadMetadata{
		RaceID:       "0b4a2f6c-1111-4c2d-9e8f-123456789abc",
		Circuit:      "Grand Prix Circuit",
		RaceDuration: 3600.5,
		Winner:       "Rival",
		Tag:          "league",
	}

	err := c.Upload(testFile, meta)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if receivedSecret != "mysecret" {
		t.Errorf("expected secret=mysecret, got %s", receivedSecret)
	}
	if receivedFilename != "grand_prix_race.json.gz" {
		t.Errorf("expected filename=grand_prix_race.json.gz, got %s", receivedFilename)
	}
	if receivedRaceID != meta.RaceID {
		t.Errorf("expected raceId=%s, got %s", meta.RaceID, receivedRaceID)
	}
	if receivedCircuit != "Grand Prix Circuit" {
		t.Errorf("expected circuit=Grand Prix Circuit, got %s", receivedCircuit)
	}
	if receivedWinner != "Rival" {
		t.Errorf("expected winner=Rival, got %s", receivedWinner)
	}
	if receivedDuration != "3600.500" {
		t.Errorf("expected raceDuration=3600.500, got %s", receivedDuration)
	}
	if receivedTag != "league" {
		t.Errorf("expected tag=league, got %s", receivedTag)
	}
	if string(receivedFileContent) != "test content" {
		t.Errorf("expected file content 'test content', got '%s'", string(receivedFileContent))
	}
}

func TestUpload_FileNotFound(t *testing.T) {
	c := New("http://localhost:5000", "secret")
	err := c.Upload("/nonexistent/file.json.gz", core.UploadMetadata{})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	tmpDir := t.TempDir()
	testFile := tmpDir + "/test.json.gz"
	_ = writeTestFile(testFile, []byte("content"))

	c := New(server.URL, "wrong-secret")
	err := c.Upload(testFile, core.UploadMetadata{})
	if err == nil {
		t.Error("expected error for 403 response")
	}
}

func writeTestFile(path string, content []byte) error {
	return os.WriteFile(path, content, 0644)
}
