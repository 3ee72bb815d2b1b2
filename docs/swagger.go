package docs

import "github.com/swaggo/swag"

// @title           Taskflow API
// @version         1.0
// @description     Task assignment with approval workflows, progress tracking, time and billing, and recurrence

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token

// @tag.name Employees
// @tag.description Registration and login

// @tag.name Tasks
// @tag.description Task assignment, status and comments

// @tag.name Workflow
// @tag.description Approval chains

// @tag.name Tracking
// @tag.description Progress and milestones

// @tag.name Billing
// @tag.description Time entries and billing terms

// @tag.name Notifications
// @tag.description Employee inbox

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {},
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
// The paths are regenerated from the handler annotations with swag init.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Taskflow API",
	Description:      "Task assignment with approval workflows, progress tracking, time and billing, and recurrence",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
