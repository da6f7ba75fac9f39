// Package http implements the HTTP handlers of the QCM-D analysis service. Handlers
// only parse and validate requests, call the services package and render the result;
// every computation lives in the service layer.
//
// # Routes
//
// All routes are mounted below /api/v1:
//
//	POST /normalize              multipart upload of a raw export, writes Formatted-<name>
//	POST /baseline               locate a baseline window, optionally derive offsets
//	GET  /statistics             persisted range statistics (kind, format, range_label)
//	POST /statistics             baseline correct a table and compute range statistics
//	GET  /models                 the available models
//	POST /models/{model}         fit one model over saved range statistics
//	GET  /files                  list raw, formatted, result and archive files
//	GET  /files/{group}/{name}   download one file
//	POST /client-log             log entries sent by dashboard clients
//	GET  /health[/ready|/live|/version|/stats|/detailed]
//
// # Error Handling
//
// Errors are rendered as RFC 7807 problem details by the errors package:
//
//	{
//	  "type": "/errors/validation-failed",
//	  "title": "Validation Failed",
//	  "status": 400,
//	  "detail": "overtones: overtone 2 is not one of 1, 3, 5, 7, 9, 11, 13",
//	  "instance": "/api/v1/statistics",
//	  "error_code": "VALIDATION_FAILED",
//	  "trace_id": "..."
//	}
//
// Domain failures such as unreadable exports, missing columns or a model that did not
// converge answer 422. A selection with overtones that have no data in the range still
// answers 200; the affected columns are listed in "missing".
package http
