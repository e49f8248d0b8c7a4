// Package youtube resolves video identifiers from user-supplied URLs and looks
// up video titles through the YouTube Data API.
//
// Resolver accepts watch, youtu.be, embed, v, and shorts URL shapes. Client
// queries videos?part=snippet and sanitizes the title into a file stem.
// CachedFetcher wraps any TitleFetcher with a bounded TTL cache so repeated
// requests for the same video skip the network.
package youtube
