// Package crm holds the backend's resource models and list decoding.
//
// List endpoints are not uniform: some wrap items in "data", some in
// "items", some return a bare array, and not all report a total.
// DecodePage absorbs those differences so callers always get a Page.
package crm
