//go:build !gosseract

package ocr

func defaultRecognizer(cfg Config, r Runner) Recognizer {
	return TesseractCLI{Runner: r, Binary: cfg.Tesseract, Lang: cfg.TesseractLang, TessdataDir: cfg.TessdataDir}
}
