package processor

// DemoText is a two-shipment plain text document matching the demo catalog
const DemoText = `
Rastreamento: AM997753439BR
Destinatário: João Silva
Produto: Exemplo Demo

Rastreamento: AM996944264BR
Destinatário: Maria Santos
Produto: Sandália Papete Brilho Luxo Em Eva Com Strass Leve Biaritz
`

// DemoFilename is the name reported for DemoText
const DemoFilename = "demo.txt"
