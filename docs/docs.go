package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "schemes": {{ marshal .Schemes }},
  "swagger": "2.0",
  "info": {
    "description": "{{escape .Description}}",
    "title": "{{.Title}}",
    "contact": {},
    "license": {
      "name": "MIT",
      "url": "https://opensource.org/licenses/MIT"
    },
    "version": "{{.Version}}"
  },
  "host": "{{.Host}}",
  "basePath": "{{.BasePath}}",
  "paths": {
    "/api/v1/scan": {
      "post": {
        "security": [
          {
            "ApiKeyAuth": []
          }
        ],
        "description": "Probes the requested TCP ports of one host and answers with the report once every port settled or the scan budget ran out.\nOutcomes come back in request order, duplicates included. Ports beyond the configured ceiling are dropped and counted in truncated.",
        "consumes": [
          "application/json"
        ],
        "produces": [
          "application/json"
        ],
        "tags": [
          "Scans"
        ],
        "summary": "Scan one host",
        "parameters": [
          {
            "description": "Scan request parameters",
            "name": "scanRequest",
            "in": "body",
            "required": true,
            "schema": {
              "$ref": "#/definitions/scanner.Request"
            }
          }
        ],
        "responses": {
          "200": {
            "description": "Ordered scan report",
            "schema": {
              "$ref": "#/definitions/scanner.ScanReport"
            }
          },
          "400": {
            "description": "Malformed JSON, invalid host, missing or invalid ports",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          },
          "401": {
            "description": "Missing or incorrect API key",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          },
          "403": {
            "description": "Target is the scanner's own machine",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          },
          "413": {
            "description": "Request body too large",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          },
          "429": {
            "description": "Rate limit exceeded",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          },
          "500": {
            "description": "Scan aborted by an internal error",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          },
          "503": {
            "description": "Every scan slot is busy",
            "schema": {
              "$ref": "#/definitions/api.ErrorResponse"
            }
          }
        }
      }
    },
    "/health": {
      "get": {
        "description": "Liveness information. It never touches the scan path.",
        "produces": [
          "application/json"
        ],
        "tags": [
          "Health"
        ],
        "summary": "Service health",
        "responses": {
          "200": {
            "description": "OK",
            "schema": {
              "$ref": "#/definitions/api.HealthResponse"
            }
          }
        }
      }
    }
  },
  "definitions": {
    "api.ErrorResponse": {
      "type": "object",
      "properties": {
        "error": {
          "type": "string",
          "example": "scanning \"localhost\" is not allowed"
        },
        "kind": {
          "type": "string",
          "enum": [
            "InvalidHost",
            "ForbiddenTarget",
            "MissingPorts",
            "InvalidPort",
            "ScanInternalError"
          ],
          "example": "ForbiddenTarget"
        }
      }
    },
    "api.HealthResponse": {
      "type": "object",
      "properties": {
        "activeScans": {
          "type": "integer",
          "example": 1
        },
        "maxScans": {
          "type": "integer",
          "example": 4
        },
        "status": {
          "type": "string",
          "example": "ok"
        },
        "strategy": {
          "type": "string",
          "enum": [
            "connect",
            "nmap"
          ],
          "example": "connect"
        },
        "uptimeSeconds": {
          "type": "integer",
          "example": 3600
        }
      }
    },
    "scanner.PortOutcome": {
      "type": "object",
      "properties": {
        "abandoned": {
          "type": "boolean",
          "example": false
        },
        "banner": {
          "type": "string",
          "example": "SSH-2.0-OpenSSH_9.6"
        },
        "fingerprint": {
          "type": "string",
          "example": "ssh"
        },
        "observedAt": {
          "type": "string",
          "format": "date-time"
        },
        "port": {
          "type": "integer",
          "example": 22
        },
        "service": {
          "type": "string",
          "example": "SSH"
        },
        "state": {
          "type": "string",
          "enum": [
            "Open",
            "Closed",
            "Filtered"
          ],
          "example": "Open"
        }
      }
    },
    "scanner.Request": {
      "type": "object",
      "properties": {
        "host": {
          "type": "string",
          "example": "scanme.nmap.org"
        },
        "maxConcurrency": {
          "type": "integer",
          "example": 10
        },
        "ports": {
          "type": "array",
          "items": {
            "type": "integer"
          },
          "example": [
            22,
            80,
            443
          ]
        },
        "timeoutMillis": {
          "type": "integer",
          "example": 1000
        }
      }
    },
    "scanner.ScanReport": {
      "type": "object",
      "properties": {
        "abandonedCount": {
          "type": "integer",
          "example": 0
        },
        "closedCount": {
          "type": "integer",
          "example": 1
        },
        "deadlineExceeded": {
          "type": "boolean",
          "example": false
        },
        "durationMillis": {
          "type": "integer",
          "example": 1042
        },
        "filteredCount": {
          "type": "integer",
          "example": 0
        },
        "host": {
          "type": "string",
          "example": "scanme.nmap.org"
        },
        "id": {
          "type": "string",
          "format": "uuid",
          "example": "a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"
        },
        "openCount": {
          "type": "integer",
          "example": 2
        },
        "outcomes": {
          "type": "array",
          "items": {
            "$ref": "#/definitions/scanner.PortOutcome"
          }
        },
        "startedAt": {
          "type": "string",
          "format": "date-time"
        },
        "totalScanned": {
          "type": "integer",
          "example": 3
        },
        "truncated": {
          "type": "integer",
          "example": 0
        }
      }
    }
  },
  "securityDefinitions": {
    "ApiKeyAuth": {
      "type": "apiKey",
      "name": "Authorization",
      "in": "header"
    }
  }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "portwarden API",
	Description:      "Concurrent TCP port scanner: ordered per-port states, service labels and banners for one host per request.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
