// Package docs holds the OpenAPI description served under /swagger.
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
        "/api/applications": {
            "post": {
                "description": "Inserts or replaces applications so they can be analyzed by id. Cached analyses of replaced applications are dropped.",
                "consumes": ["application/json", "multipart/form-data", "text/csv"],
                "produces": ["application/json"],
                "tags": ["applications"],
                "summary": "Store applications",
                "parameters": [
                    {"description": "Applications", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.RetrainRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            }
        },
        "/api/applications/{id}": {
            "delete": {
                "description": "Deletes a stored application with its whole analysis history and drops its cached result.",
                "produces": ["application/json"],
                "tags": ["applications"],
                "summary": "Erase an application",
                "parameters": [
                    {"type": "string", "description": "Application ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/privacy.Erasure"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.AppError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            }
        },
        "/api/applications/{id}/privacy": {
            "get": {
                "produces": ["application/json"],
                "tags": ["applications"],
                "summary": "Stored data for an application",
                "parameters": [
                    {"type": "string", "description": "Application ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/privacy.Footprint"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            }
        },
        "/api/ml/analysis": {
            "post": {
                "description": "Scores a stored application and explains the result. Results are cached per application until invalidated or the model is retrained.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Analyze an application",
                "parameters": [
                    {"description": "Application to analyze", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.AnalyzeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/analysis.AnalysisResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.AppError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.AppError"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Drop every cached analysis",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/ml/analysis/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Get the analysis of an application",
                "parameters": [
                    {"type": "string", "description": "Application ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/analysis.AnalysisResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.AppError"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Drop one cached analysis",
                "parameters": [
                    {"type": "string", "description": "Application ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/ml/analysis/{id}/explain": {
            "get": {
                "description": "Attributes the model output for the requested category, or the predicted one when omitted. Not cached.",
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Explain a risk category",
                "parameters": [
                    {"type": "string", "description": "Application ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Risk category label", "name": "category", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/analysis.Explanation"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.AppError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.AppError"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            }
        },
        "/api/ml/categorize": {
            "post": {
                "description": "Predicts risk categories for many applications at once, without explanations. Records are not stored.",
                "consumes": ["application/json", "multipart/form-data", "text/csv"],
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Categorize a batch",
                "parameters": [
                    {"description": "Applications", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.CategorizeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.CategorizeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.AppError"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            }
        },
        "/api/ml/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Model status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/analysis.Health"}}
                }
            }
        },
        "/api/ml/leaderboard": {
            "get": {
                "description": "Ranks applications by the risk score of their latest analysis in the period. Boards are cached briefly.",
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Riskiest applications",
                "parameters": [
                    {"type": "string", "description": "daily, weekly (default), monthly or all_time", "name": "period", "in": "query"},
                    {"type": "integer", "description": "Entries to return, at most 100", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/leaderboard.Board"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            }
        },
        "/api/ml/leaderboard/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Rank of one application",
                "parameters": [
                    {"type": "string", "description": "Application ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "daily, weekly (default), monthly or all_time", "name": "period", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/leaderboard.Entry"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            }
        },
        "/api/ml/retrain": {
            "post": {
                "description": "Fits a new pipeline on an uploaded corpus (multipart \"file\", text/csv or JSON records) or, with an empty body, on every stored application. The serving model changes only when training succeeds.",
                "consumes": ["application/json", "multipart/form-data", "text/csv"],
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Retrain the model",
                "parameters": [
                    {"description": "Training corpus", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/types.RetrainRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.RetrainResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.AppError"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/errors.AppError"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/errors.AppError"}}
                }
            }
        },
        "/api/ml/taxonomy": {
            "get": {
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Five Cs taxonomy",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/main.TaxonomyResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Reports storage, rate limiter, runtime and request metrics. Answers 503 when the database is unreachable.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Service health",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "types.AnalyzeRequest": {
            "type": "object",
            "required": ["application_id"],
            "properties": {"application_id": {"type": "string"}}
        },
        "types.ApplicationRecord": {
            "type": "object",
            "required": ["application_id"],
            "properties": {
                "application_id": {"type": "string"},
                "application_date": {"type": "string"},
                "civil_status": {"type": "string"},
                "dependents": {"type": "number"},
                "address_city": {"type": "string"},
                "address_province": {"type": "string"},
                "years_of_stay": {"type": "number"},
                "residence_type": {"type": "string"},
                "employment_type": {"type": "string"},
                "credit_limit": {"type": "number"},
                "gross_monthly_income": {"type": "number"},
                "source_of_funds": {"type": "string"},
                "bank_avg_monthly_deposits": {"type": "number"},
                "bank_avg_monthly_withdrawals": {"type": "number"},
                "bank_frequency_of_transactions": {"type": "number"},
                "bank_loans_taken": {"type": "number"},
                "bank_emi_payment": {"type": "number"},
                "bank_successful_loans": {"type": "number"},
                "prepaid_load_frequency": {"type": "number"},
                "postpaid_plan_history": {"type": "string"},
                "data_usage_patterns": {"type": "string"},
                "wallet_avg_monthly_deposits": {"type": "number"},
                "wallet_avg_monthly_withdrawals": {"type": "number"},
                "wallet_frequency_of_transactions": {"type": "number"},
                "loan_purpose": {"type": "string"},
                "loan_amount_requested": {"type": "number"},
                "loan_tenor_months": {"type": "number"}
            }
        },
        "types.RetrainRequest": {
            "type": "object",
            "required": ["records"],
            "properties": {"records": {"type": "array", "items": {"$ref": "#/definitions/types.ApplicationRecord"}}}
        },
        "types.CategorizeRequest": {
            "type": "object",
            "required": ["records"],
            "properties": {"records": {"type": "array", "items": {"$ref": "#/definitions/types.ApplicationRecord"}}}
        },
        "analysis.FeatureImpact": {
            "type": "object",
            "properties": {
                "feature": {"type": "string"},
                "impact": {"type": "number"},
                "value": {"type": "string"},
                "description": {"type": "string"},
                "five_c": {"type": "string"}
            }
        },
        "fivec.Score": {
            "type": "object",
            "properties": {
                "scores": {"type": "object", "additionalProperties": {"type": "number"}},
                "unmapped": {"type": "array", "items": {"type": "string"}},
                "unmapped_weight": {"type": "number"}
            }
        },
        "analysis.AnalysisResult": {
            "type": "object",
            "properties": {
                "application_id": {"type": "string"},
                "source": {"type": "string", "enum": ["model", "fallback"]},
                "stage": {"type": "string"},
                "risk_category": {"type": "string"},
                "risk_level": {"type": "integer"},
                "risk_score": {"type": "number"},
                "confidence": {"type": "number"},
                "probabilities": {"type": "object", "additionalProperties": {"type": "number"}},
                "top_features": {"type": "array", "items": {"$ref": "#/definitions/analysis.FeatureImpact"}},
                "five_c": {"$ref": "#/definitions/fivec.Score"},
                "improvements": {"type": "array", "items": {"type": "string"}},
                "summary": {"type": "string"},
                "model_version": {"type": "string"},
                "fallback_reason": {"type": "string"},
                "unseen_categories": {"type": "array", "items": {"type": "string"}},
                "imputed_fields": {"type": "array", "items": {"type": "string"}},
                "generated_at": {"type": "string"}
            }
        },
        "analysis.Explanation": {
            "type": "object",
            "properties": {
                "application_id": {"type": "string"},
                "risk_category": {"type": "string"},
                "probability": {"type": "number"},
                "top_features": {"type": "array", "items": {"$ref": "#/definitions/analysis.FeatureImpact"}},
                "five_c": {"$ref": "#/definitions/fivec.Score"},
                "attribution": {"type": "object", "additionalProperties": true},
                "model_version": {"type": "string"}
            }
        },
        "analysis.Prediction": {
            "type": "object",
            "properties": {
                "application_id": {"type": "string"},
                "risk_category": {"type": "string"},
                "risk_level": {"type": "integer"},
                "confidence": {"type": "number"},
                "probabilities": {"type": "object", "additionalProperties": {"type": "number"}},
                "unseen_categories": {"type": "array", "items": {"type": "string"}}
            }
        },
        "analysis.Health": {
            "type": "object",
            "properties": {
                "ready": {"type": "boolean"},
                "model_version": {"type": "string"},
                "trained_at": {"type": "string"},
                "labels": {"type": "array", "items": {"type": "string"}},
                "training": {"type": "object", "additionalProperties": true},
                "cache_size": {"type": "integer"},
                "explain_breaker": {"type": "string"}
            }
        },
        "main.RetrainResponse": {
            "type": "object",
            "properties": {
                "model_version": {"type": "string"},
                "trained_at": {"type": "string"},
                "training": {"type": "object", "additionalProperties": true},
                "stored": {"type": "integer"},
                "source": {"type": "string", "enum": ["upload", "store"]}
            }
        },
        "main.CategorizeResponse": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "model_version": {"type": "string"},
                "predictions": {"type": "array", "items": {"$ref": "#/definitions/analysis.Prediction"}}
            }
        },
        "main.TaxonomyResponse": {
            "type": "object",
            "properties": {
                "categories": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}},
                "unmapped": {"type": "array", "items": {"type": "string"}}
            }
        },
        "privacy.Erasure": {
            "type": "object",
            "properties": {
                "application_id": {"type": "string"},
                "applications_deleted": {"type": "integer"},
                "analyses_deleted": {"type": "integer"},
                "cache_invalidated": {"type": "boolean"}
            }
        },
        "privacy.Footprint": {
            "type": "object",
            "properties": {
                "application_id": {"type": "string"},
                "stored": {"type": "boolean"},
                "analyses": {"type": "integer"},
                "first_analysis": {"type": "string", "format": "date-time"},
                "last_analysis": {"type": "string", "format": "date-time"},
                "retention_days": {"type": "integer"}
            }
        },
        "leaderboard.Entry": {
            "type": "object",
            "properties": {
                "rank": {"type": "integer"},
                "application_id": {"type": "string"},
                "risk_category": {"type": "string"},
                "risk_level": {"type": "integer"},
                "risk_score": {"type": "number"},
                "confidence": {"type": "number"},
                "source": {"type": "string"},
                "model_version": {"type": "string"},
                "analyzed_at": {"type": "string", "format": "date-time"}
            }
        },
        "leaderboard.Board": {
            "type": "object",
            "properties": {
                "period": {"type": "string", "enum": ["daily", "weekly", "monthly", "all_time"]},
                "period_start": {"type": "string", "format": "date-time"},
                "generated_at": {"type": "string", "format": "date-time"},
                "total": {"type": "integer"},
                "distribution": {"type": "object", "additionalProperties": {"type": "integer"}},
                "average_risk_score": {"type": "number"},
                "entries": {"type": "array", "items": {"$ref": "#/definitions/leaderboard.Entry"}}
            }
        },
        "errors.AppError": {
            "type": "object",
            "properties": {
                "category": {"type": "string"},
                "http_status": {"type": "integer"},
                "timestamp": {"type": "string"},
                "request_id": {"type": "string"}
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
	Title:            "Credit Risk Lens API",
	Description:      "Ordinal credit risk scoring with local explanations grouped into the five Cs of credit.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
