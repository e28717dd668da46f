// Package version reports the build version of crmkit binaries.
package version
