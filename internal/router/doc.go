// Package router maps inbound MQTT topics to dispatch targets.
//
// The topic table comes from configuration; lookup is exact-match and
// unknown topics are silently dropped, since a shared broker carries
// unrelated traffic. The router distinguishes ordinary metric topics
// (buffered for aggregation) from the load topic and the two battery SoC
// control topics, which receive additional or different handling.
package router
