package model

import "time"

// --- Configuration Structures ---

// Settings is the live, operator-editable configuration. Config commands
// merge into it by JSON key.
type Settings struct {
	PrinterName      string `json:"printer_name" koanf:"printer_name" validate:"required"`
	PrinterDriver    string `json:"printer_driver" koanf:"printer_driver" validate:"oneof=escpos file"`
	PrinterIP        string `json:"printer_ip" koanf:"printer_ip" validate:"required_if=PrinterDriver escpos"`
	PrinterPort      int    `json:"printer_port" koanf:"printer_port" validate:"min=1,max=65535"`
	PrinterMaxDots   int    `json:"printer_max_dots" koanf:"printer_max_dots" validate:"min=0"`
	OutputDir        string `json:"output_dir" koanf:"output_dir" validate:"required_if=PrinterDriver file"`
	PaperWidth       string `json:"paper_width" koanf:"paper_width" validate:"oneof=58mm 72mm 80mm"`
	TextSize         string `json:"text_size" koanf:"text_size" validate:"oneof=small normal large extra pequeno grande"`
	RotationDegrees  int    `json:"rotation_degrees" koanf:"rotation_degrees" validate:"oneof=0 90 180 270"`
	LineSpacingPx    int    `json:"line_spacing_px" koanf:"line_spacing_px" validate:"min=0,max=64"`
	AutoPrintClient  bool   `json:"auto_print_client" koanf:"auto_print_client"`
	AutoPrintKitchen bool   `json:"auto_print_kitchen" koanf:"auto_print_kitchen"`
	StoreName        string `json:"store_name" koanf:"store_name"`
	CurrencySymbol   string `json:"currency_symbol" koanf:"currency_symbol"`
	DecimalSeparator string `json:"decimal_separator" koanf:"decimal_separator" validate:"len=1"`
	Timezone         string `json:"timezone" koanf:"timezone" validate:"omitempty,timezone"`
}

// DefaultSettings are the factory settings used when nothing is saved.
func DefaultSettings() Settings {
	return Settings{
		PrinterName:      "ELGIN i9(USB)",
		PrinterDriver:    "escpos",
		PrinterIP:        "127.0.0.1",
		PrinterPort:      9100,
		PaperWidth:       "80mm",
		TextSize:         "extra",
		RotationDegrees:  90,
		LineSpacingPx:    8,
		AutoPrintClient:  true,
		AutoPrintKitchen: true,
		StoreName:        "Perfect Menu",
		CurrencySymbol:   "R$",
		DecimalSeparator: ",",
	}
}

// AutoPrint reports whether the given copy is enabled.
func (s Settings) AutoPrint(subtype PrintSubtype) bool {
	if subtype == PrintKitchen {
		return s.AutoPrintKitchen
	}
	return s.AutoPrintClient
}

// Location resolves Timezone, falling back to the host zone.
func (s Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Target is the printer the settings point at.
func (s Settings) Target() Printer {
	return Printer{
		Name:      s.PrinterName,
		Driver:    s.PrinterDriver,
		IP:        s.PrinterIP,
		Port:      s.PrinterPort,
		MaxDots:   s.PrinterMaxDots,
		OutputDir: s.OutputDir,
		IsEnabled: true,
	}
}

type Printer struct {
	Name        string `json:"name"`
	Driver      string `json:"driver"`
	IP          string `json:"ip"`
	Port        int    `json:"port"`
	MaxDots     int    `json:"maxDots,omitempty"`
	OutputDir   string `json:"outputDir,omitempty"`
	Description string `json:"description,omitempty"`
	IsEnabled   bool   `json:"isEnabled"`
}
