// Package upload issues short-lived signed credentials for direct object
// storage uploads. The service never proxies file bytes; it hands the client
// a credential the storage tier can verify without a database round trip.
package upload
