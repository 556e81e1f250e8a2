// Package scaffold generates the deterministic default application written
// into a project that has no files yet. The output is a minimal Vite+React
// app: every file the entry point references is part of the set, and every
// import resolves to a scaffold file or a manifest dependency.
package scaffold

const packageJSON = `{
  "name": "my-app",
  "private": true,
  "version": "0.1.0",
  "type": "module",
  "scripts": {
    "dev": "vite",
    "build": "vite build",
    "preview": "vite preview"
  },
  "dependencies": {
    "react": "^18.3.1",
    "react-dom": "^18.3.1"
  },
  "devDependencies": {
    "@vitejs/plugin-react": "^4.3.4",
    "vite": "^6.0.0"
  }
}
`

const indexHTML = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>My App</title>
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="/src/main.jsx"></script>
  </body>
</html>
`

const viteConfig = `import { defineConfig } from 'vite'
import react from '@vitejs/plugin-react'

export default defineConfig({
  plugins: [react()],
  server: {
    host: true,
    port: 5173,
  },
})
`

const mainJSX = `import React from 'react'
import ReactDOM from 'react-dom/client'
import App from './App.jsx'
import './index.css'

ReactDOM.createRoot(document.getElementById('root')).render(
  <React.StrictMode>
    <App />
  </React.StrictMode>,
)
`

const appJSX = `function App() {
  return (
    <div className="app">
      <h1>Hello</h1>
      <p>Start describing your app to build it.</p>
    </div>
  )
}

export default App
`

const indexCSS = `:root {
  font-family: system-ui, sans-serif;
  color: #213547;
  background-color: #ffffff;
}

.app {
  max-width: 640px;
  margin: 4rem auto;
  padding: 0 1rem;
  text-align: center;
}
`

// Files returns the default application file set. The result is a fresh
// map on every call; callers may mutate it freely.
func Files() map[string]string {
	return map[string]string{
		"package.json":   packageJSON,
		"index.html":     indexHTML,
		"vite.config.js": viteConfig,
		"src/main.jsx":   mainJSX,
		"src/App.jsx":    appJSX,
		"src/index.css":  indexCSS,
	}
}
