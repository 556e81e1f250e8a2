package manifest

import (
	"reflect"
	"testing"
)

func TestDetect_Vite(t *testing.T) {
	files := map[string]string{
		"package.json": `{
  "scripts": {"dev": "vite"},
  "dependencies": {"react": "^18.3.1"},
  "devDependencies": {"vite": "^6.0.0"}
}`,
	}

	d := Detect(files, 8080)

	if d.Type != AppTypeVite {
		t.Errorf("Type = %v, want vite", d.Type)
	}
	if !d.HasManifest {
		t.Error("HasManifest should be true")
	}
	if d.Port != 5173 {
		t.Errorf("Port = %d, want 5173", d.Port)
	}
	if !reflect.DeepEqual(d.DevCommand, []string{"npm", "run", "dev"}) {
		t.Errorf("DevCommand = %v", d.DevCommand)
	}
}

func TestDetect_NextBeatsReact(t *testing.T) {
	files := map[string]string{
		"package.json": `{
  "dependencies": {"next": "^15.0.0", "react": "^18.3.1", "react-dom": "^18.3.1"}
}`,
	}

	d := Detect(files, 8080)
	if d.Type != AppTypeNext {
		t.Errorf("Type = %v, want next", d.Type)
	}
	if d.Port != 3000 {
		t.Errorf("Port = %d, want 3000", d.Port)
	}
}

func TestDetect_CRA(t *testing.T) {
	files := map[string]string{
		"package.json": `{"dependencies": {"react-scripts": "5.0.1"}}`,
	}

	d := Detect(files, 8080)
	if d.Type != AppTypeCRA {
		t.Errorf("Type = %v, want create-react-app", d.Type)
	}
	if !reflect.DeepEqual(d.DevCommand, []string{"npm", "start"}) {
		t.Errorf("DevCommand = %v", d.DevCommand)
	}
}

func TestDetect_NoManifest(t *testing.T) {
	files := map[string]string{"index.html": "<html></html>"}

	d := Detect(files, 8080)
	if d.Type != AppTypeGeneric {
		t.Errorf("Type = %v, want generic", d.Type)
	}
	if d.HasManifest {
		t.Error("HasManifest should be false")
	}
	if d.Port != 8080 {
		t.Errorf("Port = %d, want the default", d.Port)
	}
}

func TestDetect_MalformedManifest(t *testing.T) {
	files := map[string]string{"package.json": "{not json"}

	d := Detect(files, 8080)
	if d.Type != AppTypeGeneric {
		t.Errorf("Type = %v, want generic fallback", d.Type)
	}
	if !d.HasManifest {
		t.Error("a malformed manifest is still a manifest (install is attempted)")
	}
}

func TestDetect_UnrecognizedDeps(t *testing.T) {
	files := map[string]string{
		"package.json": `{"dependencies": {"left-pad": "1.3.0"}}`,
	}

	d := Detect(files, 8080)
	if d.Type != AppTypeGeneric {
		t.Errorf("Type = %v, want generic", d.Type)
	}
	if !d.HasManifest {
		t.Error("HasManifest should be true")
	}
}
