package epd

// Based on https://github.com/waveshareteam/e-Paper/tree/master/RaspberryPi_JetsonNano/c/lib/e-Paper

// EPD7in5V2 is the Waveshare 7.5" V2 (800x480) panel.
var EPD7in5V2 = &Profile{
	Name:   "7in5_v2",
	Width:  800,
	Height: 480,
	Init: []Action{
		Command(0x06), // booster soft start
		Data(0x17, 0x17, 0x28, 0x17),
		Command(0x01), // power setting
		Data(0x07, 0x07, 0x3f, 0x3f),
		Command(cmdPowerOn),
		ReadBusy(),
		Command(0x00), // panel setting
		Data(0x1f),
		Command(0x61), // resolution 800x480
		Data(0x03, 0x20, 0x01, 0xE0),
		Command(0x15), // dual SPI off
		Data(0x00),
		Command(0x50), // VCOM and data interval
		Data(0x10, 0x07),
		Command(0x60), // TCON
		Data(0x22),
	},
}

// EPD5in83V2 is the Waveshare 5.83" V2 (648x480) panel.
var EPD5in83V2 = &Profile{
	Name:   "5in83_v2",
	Width:  648,
	Height: 480,
	Init: []Action{
		Command(0x01),
		Data(0x07, 0x07, 0x3f, 0x3f),
		Command(cmdPowerOn),
		ReadBusy(),
		Command(0x00),
		Data(0x1f),
		Command(0x61), // resolution 648x480
		Data(0x02, 0x88, 0x01, 0xE0),
		Command(0x15),
		Data(0x00),
		Command(0x50),
		Data(0x10, 0x07),
		Command(0x60),
		Data(0x22),
	},
}

// EPD2in9D is the Waveshare 2.9" (D) flexible (128x296) panel.
var EPD2in9D = &Profile{
	Name:   "2in9d",
	Width:  128,
	Height: 296,
	Init: []Action{
		Command(cmdPowerOn),
		ReadBusy(),
		Command(0x00),
		Data(0x1f),
		Command(0x61), // resolution 128x296
		Data(0x80, 0x01, 0x28),
		Command(0x50),
		Data(0x97),
	},
}

// EPD1in54M09 is the GoodDisplay GDEW0154M09 (200x200, JD79653) panel.
//
// Based on https://github.com/GoodDisplay/E-paper-Display-Library-of-GoodDisplay/blob/main/Monochrome_E-paper-Display/1.54inch_JD79653_GDEW0154M09_200x200/Arduino/GDEW0154M09_Arduino.ino
var EPD1in54M09 = &Profile{
	Name:     "1in54_m09",
	Width:    200,
	Height:   200,
	BusyHigh: true,
	Init: []Action{
		Delay(100),
		Command(0x00), // panel setting
		Data(0xDf, 0x0e),
		Command(0x4D), // FITI internal code
		Data(0x55),
		Command(0xaa),
		Data(0x0f),
		Command(0xE9),
		Data(0x02),
		Command(0xb6),
		Data(0x11),
		Command(0xF3),
		Data(0x0a),
		Command(0x61), // resolution setting
		Data(0xc8, 0x00, 0xc8),
		Command(0x60), // TCON setting
		Data(0x00),
		Command(0x50),
		Data(0x97),
		Command(0xE3),
		Data(0x00),
		Command(cmdPowerOn),
		Delay(100),
		ReadBusy(),
	},
}
