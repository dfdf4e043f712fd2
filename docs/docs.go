// Package docs serves the OpenAPI description of the agent HTTP API.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/report/latest": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "Get the latest agent report",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.reportResponse"}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/report/latest/chart": {
            "get": {
                "produces": ["image/png"],
                "tags": ["reports"],
                "summary": "Get the M15 candle chart of the latest report",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/report/latest/chart/{tf}": {
            "get": {
                "produces": ["image/png"],
                "tags": ["reports"],
                "summary": "Get a close-price mini plot of the latest report",
                "parameters": [
                    {"type": "string", "description": "Timeframe (h1, h4, d1, m15, m5 or 1h, 4h, 1d, 15m, 5m)", "name": "tf", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/reports": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "List stored reports",
                "parameters": [
                    {"type": "integer", "default": 20, "description": "Number of reports (default 20, max 200)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/api/run": {
            "post": {
                "description": "Runs one analysis without sending notifications",
                "produces": ["application/json"],
                "tags": ["reports"],
                "summary": "Run the analysis now",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.reportResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "domain.Report": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "type": {"type": "string", "enum": ["SIGNAL", "EVENT", "ERROR"]},
                "symbol": {"type": "string"},
                "label": {"type": "string"},
                "mood": {"type": "string"},
                "side": {"type": "string", "enum": ["BUY", "SELL", "NONE"]},
                "entry": {"type": "number"},
                "sl": {"type": "number"},
                "tp": {"type": "number"},
                "confidence": {"type": "integer"},
                "tech_reason": {"type": "string"},
                "fund_reason": {"type": "string"},
                "next_steps": {"type": "string"},
                "error": {"type": "string"},
                "time_utc": {"type": "string"},
                "email_sent_utc": {"type": "string"},
                "chart_path": {"type": "string"},
                "anomaly_score": {"type": "number"}
            }
        },
        "handler.reportResponse": {
            "type": "object",
            "properties": {
                "block": {"type": "string"},
                "charts": {"type": "array", "items": {"type": "string"}},
                "report": {"$ref": "#/definitions/domain.Report"},
                "subject": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Trading Agent API",
	Description:      "Multi-timeframe FX analysis reports, charts and on-demand runs.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
