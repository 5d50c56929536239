package mock

//go:generate mockgen -destination=./mock_tempfile.go -package=mock github.com/taksan/jaql/runtime TempFileProvider
