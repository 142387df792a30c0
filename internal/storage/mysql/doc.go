// Package mysql opens MySQL connection pools and applies the embedded schema
// migrations shipped under deploy/migrations.
package mysql
