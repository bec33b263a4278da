// Package muxconfig builds router domains from a declarative YAML manifest
// and keeps them in sync with the file while the router is serving.
//
// A manifest lists domains, each with routes and nested groups:
//
//	domains:
//	  - host: api.example.com
//	    middlewares: [requestid, {name: logging, priority: 10}]
//	    routes:
//	      - pattern: /health
//	        methods: [GET]
//	        handler: health
//	    groups:
//	      - prefix: /v1
//	        middlewares: [{name: auth, priority: 5}]
//	        routes:
//	          - pattern: /users/:id(int)
//	            methods: [GET, PUT]
//	            handler: user
//
// A domain with an empty host configures the router's default domain.
// Handler and middleware names are resolved through a Catalog. Values of
// the form ${VAR} or ${VAR:-default} are replaced from the environment
// before parsing.
//
// Apply builds a fresh tree for every domain of the manifest and publishes
// them only after all of them were built, so a manifest with a single bad
// route leaves the router untouched. Watcher re-applies the manifest on
// every change of the file.
package muxconfig
