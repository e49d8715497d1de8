// Package openapi builds the OpenAPI 3 document describing the keymint API.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Version is stamped into the document's info block.
var Version = "dev"

// Document generates the OpenAPI document and returns it as JSON.
func Document() ([]byte, error) {
	return Build().MarshalJSON()
}

// Build assembles the full document.
func Build() *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "keymint API",
			Description: "Issue, manage, and validate API keys for users.",
			Version:     Version,
		},
		Servers: openapi3.Servers{
			{URL: "/"},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{
		"Envelope": envelopeSchema(),
		"APIKey":   apiKeySchema(),
		"User":     userSchema(),
		"Admin":    adminSchema(),
	}
	components.SecuritySchemes = openapi3.SecuritySchemes{
		"apiKey": &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type: "apiKey",
				In:   "header",
				Name: "X-API-Key",
			},
		},
	}
	doc.Components = &components

	doc.Paths = openapi3.NewPaths()

	doc.Paths.Set("/api/apikey", &openapi3.PathItem{
		Post: op("createKey", "apikey", "Issue a new API key",
			bodyOf(issueRequestSchema()), envResponses("201", "Key created")),
		Get: op("listKeys", "apikey", "List all API keys with owners",
			nil, envResponses("200", "Key collection")),
	})
	doc.Paths.Set("/api/apikey/generate-only", &openapi3.PathItem{
		Post: op("generateKeyOnly", "apikey", "Generate a key without a user",
			bodyOf(datesRequestSchema()), envResponses("201", "Key created")),
	})
	doc.Paths.Set("/api/apikey/associate-user", &openapi3.PathItem{
		Post: op("associateUser", "apikey", "Attach a user to a generated key",
			bodyOf(associateRequestSchema()), envResponses("200", "Key associated")),
	})
	doc.Paths.Set("/api/apikey/validate", &openapi3.PathItem{
		Post: op("validateKey", "apikey", "Diagnostic key check (always 200, verdict in valid field)",
			bodyOf(objectSchema(map[string]*openapi3.Schema{
				"api_key": str(""),
			})), envResponses("200", "Verdict")),
	})
	doc.Paths.Set("/api/apikey/{id}", &openapi3.PathItem{
		Parameters: idParam(),
		Get: op("getKey", "apikey", "Get one key with its owner",
			nil, envResponses("200", "Key detail")),
		Delete: op("deleteKey", "apikey", "Permanently delete a key",
			nil, envResponses("200", "Key deleted")),
	})
	doc.Paths.Set("/api/apikey/{id}/status", &openapi3.PathItem{
		Parameters: idParam(),
		Put: op("updateKeyStatus", "apikey", "Set a key's status",
			bodyOf(objectSchema(map[string]*openapi3.Schema{
				"status": enumStr("active", "inactive", "expired"),
			})), envResponses("200", "Status updated")),
	})

	doc.Paths.Set("/api/user", &openapi3.PathItem{
		Get: op("listUsers", "user", "List users with key counts",
			nil, envResponses("200", "User collection")),
	})
	doc.Paths.Set("/api/user/{id}", &openapi3.PathItem{
		Parameters: idParam(),
		Get: op("getUser", "user", "Get a user and all their keys",
			nil, envResponses("200", "User detail")),
	})

	doc.Paths.Set("/api/admin", &openapi3.PathItem{
		Post: op("createAdmin", "admin", "Register an admin account",
			bodyOf(credentialsSchema()), envResponses("201", "Admin created")),
		Get: op("listAdmins", "admin", "List admin accounts",
			nil, envResponses("200", "Admin collection")),
	})
	doc.Paths.Set("/api/admin/{id}", &openapi3.PathItem{
		Parameters: idParam(),
		Get: op("getAdmin", "admin", "Get one admin account",
			nil, envResponses("200", "Admin detail")),
		Put: op("updateAdmin", "admin", "Update email and/or password",
			bodyOf(credentialsSchema()), envResponses("200", "Admin updated")),
		Delete: op("deleteAdmin", "admin", "Delete an admin account",
			nil, envResponses("200", "Admin deleted")),
	})

	doc.Paths.Set("/api/auth/login", &openapi3.PathItem{
		Post: op("login", "auth", "Verify admin credentials",
			bodyOf(credentialsSchema()), envResponses("200", "Login successful")),
	})

	meOp := op("me", "apikey", "Identity behind the presented key",
		nil, envResponses("200", "Caller identity"))
	meOp.Security = &openapi3.SecurityRequirements{{"apiKey": {}}}
	doc.Paths.Set("/api/me", &openapi3.PathItem{Get: meOp})

	doc.Paths.Set("/healthz", &openapi3.PathItem{
		Get: op("healthz", "system", "Liveness probe", nil,
			plainResponses("200", "Process is up")),
	})
	doc.Paths.Set("/readyz", &openapi3.PathItem{
		Get: op("readyz", "system", "Readiness probe (checks the database)", nil,
			plainResponses("200", "Database reachable")),
	})

	return doc
}

func op(id, tag, summary string, body *openapi3.RequestBodyRef, responses *openapi3.Responses) *openapi3.Operation {
	return &openapi3.Operation{
		OperationID: id,
		Tags:        []string{tag},
		Summary:     summary,
		RequestBody: body,
		Responses:   responses,
	}
}

func bodyOf(schema *openapi3.Schema) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content:  openapi3.NewContentWithJSONSchemaRef(&openapi3.SchemaRef{Value: schema}),
		},
	}
}

// envResponses declares the success status plus the standard error statuses,
// all carrying the shared envelope.
func envResponses(status, description string) *openapi3.Responses {
	envelope := openapi3.NewSchemaRef("#/components/schemas/Envelope", nil)
	responses := openapi3.NewResponses()

	set := func(code, desc string) {
		d := desc
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &d,
				Content:     openapi3.NewContentWithJSONSchemaRef(envelope),
			},
		})
	}
	set(status, description)
	set("400", "Validation failure or duplicate value")
	set("401", "Missing or unknown credentials")
	set("403", "Key inactive or expired")
	set("404", "Resource not found")
	set("500", "Internal server error")
	return responses
}

func plainResponses(status, description string) *openapi3.Responses {
	d := description
	responses := openapi3.NewResponses()
	responses.Set(status, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &d,
			Content: openapi3.NewContentWithJSONSchemaRef(&openapi3.SchemaRef{
				Value: objectSchema(map[string]*openapi3.Schema{"status": str("")}),
			}),
		},
	})
	return responses
}

func idParam() openapi3.Parameters {
	return openapi3.Parameters{
		{
			Value: &openapi3.Parameter{
				Name:     "id",
				In:       "path",
				Required: true,
				Schema: &openapi3.SchemaRef{
					Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"},
				},
			},
		},
	}
}

// ---------- schema helpers ----------

func str(format string) *openapi3.Schema {
	return &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: format}
}

func enumStr(values ...string) *openapi3.Schema {
	s := str("")
	for _, v := range values {
		s.Enum = append(s.Enum, v)
	}
	return s
}

func integer() *openapi3.Schema {
	return &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}
}

func objectSchema(props map[string]*openapi3.Schema) *openapi3.Schema {
	schemas := openapi3.Schemas{}
	for name, s := range props {
		schemas[name] = &openapi3.SchemaRef{Value: s}
	}
	return &openapi3.Schema{Type: &openapi3.Types{"object"}, Properties: schemas}
}

func envelopeSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: objectSchema(map[string]*openapi3.Schema{
		"success": {Type: &openapi3.Types{"boolean"}},
		"valid":   {Type: &openapi3.Types{"boolean"}},
		"message": str(""),
		"data":    {},
		"count":   integer(),
		"error":   str(""),
	})}
}

func apiKeySchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: objectSchema(map[string]*openapi3.Schema{
		"id":         integer(),
		"user_id":    integer(),
		"key":        str(""),
		"start_date": str("date"),
		"last_date":  str("date"),
		"outofdate":  str("date"),
		"status":     enumStr("active", "inactive", "expired"),
		"created_at": str("date-time"),
		"updated_at": str("date-time"),
	})}
}

func userSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: objectSchema(map[string]*openapi3.Schema{
		"id":         integer(),
		"first_name": str(""),
		"last_name":  str(""),
		"email":      str("email"),
		"apikey":     str(""),
		"created_at": str("date-time"),
		"updated_at": str("date-time"),
	})}
}

func adminSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: objectSchema(map[string]*openapi3.Schema{
		"id":         integer(),
		"email":      str("email"),
		"created_at": str("date-time"),
		"updated_at": str("date-time"),
	})}
}

func issueRequestSchema() *openapi3.Schema {
	s := objectSchema(map[string]*openapi3.Schema{
		"first_name": str(""),
		"last_name":  str(""),
		"email":      str("email"),
		"start_date": str("date"),
		"last_date":  str("date"),
		"status":     enumStr("active", "inactive", "expired"),
	})
	s.Required = []string{"first_name", "last_name", "email", "start_date", "last_date"}
	return s
}

func datesRequestSchema() *openapi3.Schema {
	s := objectSchema(map[string]*openapi3.Schema{
		"start_date": str("date"),
		"last_date":  str("date"),
		"status":     enumStr("active", "inactive", "expired"),
	})
	s.Required = []string{"start_date", "last_date"}
	return s
}

func associateRequestSchema() *openapi3.Schema {
	s := objectSchema(map[string]*openapi3.Schema{
		"key":        str(""),
		"first_name": str(""),
		"last_name":  str(""),
		"email":      str("email"),
	})
	s.Required = []string{"key", "first_name", "last_name", "email"}
	return s
}

func credentialsSchema() *openapi3.Schema {
	s := objectSchema(map[string]*openapi3.Schema{
		"email":    str("email"),
		"password": str("password"),
	})
	s.Required = []string{"email", "password"}
	return s
}
