// Package transcode runs the external download and encode tools that turn a
// video URL into an output file.
//
// YtDlp shells out to yt-dlp with fixed argument sets per format and confirms
// the expected file exists afterwards. The mkv format downloads an mp4 first
// and hands it to the Drapto AV1 encoder, removing the intermediate file when
// the encode succeeds.
package transcode
